package main

import "adbudget/internal/cli"

func main() {
	cli.Execute()
}
