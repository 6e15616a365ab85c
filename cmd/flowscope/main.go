package main

import "github.com/mvp-joe/flowscope/internal/cli"

func main() {
	cli.Execute()
}
