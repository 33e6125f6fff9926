package main

import "locshare-backend/internal/app"

func main() {
	app.Run()
}
