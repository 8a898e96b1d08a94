package main

import "emadiff/cmd/emadiff/cmd"

func main() {
	cmd.Execute()
}
