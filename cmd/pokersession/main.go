package main

import "github.com/mcoot/pokersession/internal/cli"

func main() {
	cli.Execute()
}
