package main

import "hotel-panel/app"

func main() {
	app.Execute(app.NewFetchCommand(app.SourceEurostat, "Download Eurostat nights, GDP, unemployment, turnover and HICP"))
}
