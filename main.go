package main

import "stagehand/internal/cli"

func main() {
	cli.Execute()
}
