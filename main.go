package main

import "github.com/vim-jp/vimmagazinetools/cmd"

func main() {
	cmd.Execute()
}
