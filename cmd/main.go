package main

import cmd "github.com/kerbaras/mangas-dl/cmd/mangas"

func main() {
	cmd.Execute()
}
