package main

import "mint/cmd"

func main() {
	cmd.Execute()
}
