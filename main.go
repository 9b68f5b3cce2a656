package main

import "github.com/CraigKelly/gnuts/cmd"

// TODO: mass matrix adaptation (diagonal) alongside the step size window

func main() {
	cmd.Execute()
}
