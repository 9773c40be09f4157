package main

import "github.com/rileyjmurray/randla/cmd/randla/cmd"

func main() {
	cmd.Execute()
}
