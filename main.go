package main

import "github.com/agentic-research/crater/cmd"

func main() {
	cmd.Execute()
}
