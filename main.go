package main

import "flickshare/cmd"

func main() {
	cmd.Execute()
}
