package main

import "github.com/helionsec/helion/cmd"

func main() {
	cmd.Execute()
}
