package main

import "github.com/taskhive/apiserver/cmd"

func main() {
	cmd.Execute()
}
