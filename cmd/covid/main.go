package main

import "hotel-panel/app"

func main() {
	app.Execute(app.NewFetchCommand(app.SourceCovid, "Download monthly COVID cases per 100k from OWID"))
}
