package main

import "github.com/brogergvhs/readmanga/cmd"

func main() {
	cmd.Execute()
}
