package main

import "github.com/mselser95/execution-harness/cmd"

func main() {
	cmd.Execute()
}
