package main

import "hotel-panel/app"

func main() {
	app.Execute(app.NewFetchCommand(app.SourceFX, "Download monthly EUR/USD and EUR/GBP closes"))
}
