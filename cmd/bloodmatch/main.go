package main

import "bloodmatch/app"

func main() {
	app.Run()
}
