package main

import "github.com/CMPEQ0/lab-mark-api/cmd"

func main() {
	cmd.Execute()
}
