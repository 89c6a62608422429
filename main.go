package main

import "github.com/okrause/ecsctl/cmd"

func main() {
	cmd.Execute()
}
