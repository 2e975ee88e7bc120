package main

import "thoreinstein.com/repodash/cmd"

func main() {
	cmd.Execute()
}
