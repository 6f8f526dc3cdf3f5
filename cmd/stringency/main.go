package main

import "hotel-panel/app"

func main() {
	app.Execute(app.NewFetchCommand(app.SourceStringency, "Download monthly policy stringency (OxCGRT, OWID fallback)"))
}
