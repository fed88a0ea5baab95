package main

import "orcbuild/cmd"

func main() {
	cmd.Execute()
}
