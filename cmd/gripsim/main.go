// Gripsim runs one simulated gripper per configured endpoint and
// shows the Modbus traffic in a log window. Devices can be taken
// offline to provoke client timeouts.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rwirdemann/gripgate"
	"github.com/rwirdemann/gripgate/sim"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

type simEntry struct {
	name   string
	host   string
	server *sim.GripperServer
}

var configPath string

func main() {
	flag.StringVar(&configPath, "config", "", "path to the configuration directory")
	flag.Parse()
	if configPath == "" {
		flag.PrintDefaults()
		os.Exit(0)
	}

	os.Exit(run())
}

func run() int {
	config, err := gripgate.LoadConfig(configPath)
	if err != nil {
		slog.Error(err.Error())
		return 1
	}

	logArea := widget.NewTextGrid()

	var data []*simEntry
	for _, gc := range config.Grippers {
		s := sim.NewGripperServer(gc.Host, logArea)
		if err := s.Start(); err != nil {
			slog.Error(err.Error())
			return 1
		}
		data = append(data, &simEntry{name: gc.Name, host: gc.Host, server: s})
	}

	myApp := app.New()
	myWindow := myApp.NewWindow("GripSim")

	logScrollContainer := container.NewScroll(logArea)
	logScrollContainer.SetMinSize(fyne.NewSize(400, 600))

	// Helper function to append text and auto-scroll to bottom
	appendAndScroll := func(text string) {
		logArea.Append(text)
		logScrollContainer.ScrollToBottom()
	}

	list := widget.NewList(
		func() int {
			return len(data)
		},
		func() fyne.CanvasObject {
			// Create a template with name, host and a button
			name := widget.NewLabel("template")
			host := widget.NewLabel("template")
			button := widget.NewButton("Online", func() {})
			button.Importance = widget.SuccessImportance
			return container.NewHBox(name, host, button)
		},
		func(i widget.ListItemID, o fyne.CanvasObject) {
			cont := o.(*fyne.Container)
			nameLabel := cont.Objects[0].(*widget.Label)
			hostLabel := cont.Objects[1].(*widget.Label)
			button := cont.Objects[2].(*widget.Button)

			entry := data[i]
			nameLabel.SetText(entry.name)
			hostLabel.SetText(entry.server.Addr())

			// Update button appearance based on device state
			updateButton := func() {
				if entry.server.Online() {
					button.SetText("Online")
					button.Importance = widget.SuccessImportance // Green
				} else {
					button.SetText("Offline")
					button.Importance = widget.DangerImportance // Red
				}
				button.Refresh()
			}

			updateButton() // Initial state

			button.OnTapped = func() {
				// Toggle device state
				ts := time.Now().Format(time.DateTime)
				if entry.server.Online() {
					entry.server.Disconnect()
					appendAndScroll(fmt.Sprintf("%s %s (%s): offline", ts, entry.name, entry.server.Addr()))
				} else {
					entry.server.Connect()
					appendAndScroll(fmt.Sprintf("%s %s (%s): online", ts, entry.name, entry.server.Addr()))
				}
				updateButton()
			}
		})

	// Empty container for the right side (2/3 of the window)
	rightSide := container.NewVBox()
	rightSide.Add(logScrollContainer)

	// Main split container with list on left (1/3) and log on right (2/3)
	split := container.NewHSplit(list, rightSide)
	split.SetOffset(0.33) // List takes up 1/3 of the width

	myWindow.Resize(fyne.NewSize(900, 600))
	myWindow.SetContent(split)
	myWindow.ShowAndRun()
	return 0
}
