package main

import "hotel-panel/app"

func main() {
	app.Execute(app.NewMergeCommand())
}
