package main

import "pathcompare/cmd"

func main() {
	cmd.Execute()
}
