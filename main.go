package main

import "datakit/cmd"

func main() {
	cmd.Execute()
}
