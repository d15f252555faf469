package main

import "eou/cmd"

func main() {
	cmd.Execute()
}
