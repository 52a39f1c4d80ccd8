package main

import "github.com/jmehdipour/leadsync/cmd"

func main() {
	cmd.Execute()
}
