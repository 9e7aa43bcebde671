package main

import "github.com/shaharia-lab/mailworker/cmd"

func main() {
	cmd.Execute()
}
