package main

import "github.com/travhall/el-camino-sub001/cmd"

func main() {
	cmd.Execute()
}
