package main

import "github.com/hsget/hsget/cmd"

func main() {
	cmd.Execute()
}
