package main

import "hotel-panel/app"

func main() {
	app.Execute(app.NewFetchCommand(app.SourceMobility, "Download monthly Google mobility for retail and workplaces"))
}
