package main

import "opskit/internal/cli"

func main() {
	cli.Execute()
}
