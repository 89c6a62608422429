// Package ui renders the interactive service dashboard: a searchable list of
// a cluster's services with desired-count and restart actions.
package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/okrause/ecsctl/pkg"
)

// Store is the slice of service operations the dashboard needs.
type Store interface {
	UpdateDesiredCount(ctx context.Context, cluster, service string, count int32) error
	Restart(ctx context.Context, cluster, service string) error
}

// Dashboard holds the tview widgets and the current service rows.
type Dashboard struct {
	app              *tview.Application
	ctx              context.Context
	store            Store
	list             *tview.List
	searchInput      *tview.InputField
	currentServices  []pkg.ServiceSummary
	filteredServices []pkg.ServiceSummary
	layout           *tview.Flex
	header           *tview.TextView
}

// NewDashboard builds the dashboard around an initial set of service rows.
func NewDashboard(app *tview.Application, ctx context.Context, store Store, initialServices []pkg.ServiceSummary) *Dashboard {
	d := &Dashboard{
		app:              app,
		ctx:              ctx,
		store:            store,
		list:             tview.NewList(),
		searchInput:      tview.NewInputField().SetLabel("/ "),
		currentServices:  initialServices,
		filteredServices: initialServices,
		header:           tview.NewTextView().SetTextAlign(tview.AlignLeft),
	}
	d.layout = d.createLayout()
	return d
}

// Run wires the widgets, starts background refresh from updates, and hands
// the layout to the application.
func (d *Dashboard) Run(updates <-chan []pkg.ServiceSummary) {
	d.updateList()
	d.setupSearchInput()
	d.setupListInputCapture()
	d.consumeUpdates(updates)

	d.app.SetRoot(d.layout, true)
	d.app.SetFocus(d.list)
}

func (d *Dashboard) updateList() {
	d.list.Clear()
	for i, service := range d.filteredServices {
		index := i
		statusColor := "[white]"
		switch strings.ToLower(service.Status) {
		case "active":
			statusColor = "[green]"
		case "draining":
			statusColor = "[yellow]"
		case "inactive":
			statusColor = "[red]"
		}
		d.list.AddItem(
			fmt.Sprintf("%s (Running: %d, Desired: %d) - Status: %s%s[-]",
				service.ServiceName, service.RunningCount, service.DesiredCount, statusColor, service.Status),
			"", 0, func() {
				d.showServiceOptions(d.filteredServices[index])
			})
	}
	d.updateHeader()
}

func (d *Dashboard) updateHeader() {
	d.header.Clear()
	fmt.Fprintf(d.header, "Total Services: %d", len(d.currentServices))
}

func (d *Dashboard) filterServices(query string) {
	if query == "" {
		d.filteredServices = d.currentServices
	} else {
		d.filteredServices = []pkg.ServiceSummary{}
		for _, service := range d.currentServices {
			if strings.Contains(strings.ToLower(service.ServiceName), strings.ToLower(query)) {
				d.filteredServices = append(d.filteredServices, service)
			}
		}
	}
	d.updateList()
}

func (d *Dashboard) setupSearchInput() {
	d.searchInput.
		SetChangedFunc(func(text string) {
			d.filterServices(text)
		}).
		SetFieldBackgroundColor(tcell.GetColor("#000000"))

	d.searchInput.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc:
			d.searchInput.SetText("")
			d.filterServices("")
			d.app.SetFocus(d.list)
			return nil
		case tcell.KeyEnter, tcell.KeyDown:
			if d.list.GetItemCount() > 0 {
				d.app.SetFocus(d.list)
			}
			return nil
		}
		return event
	})
}

func (d *Dashboard) setupListInputCapture() {
	d.list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyRune:
			switch event.Rune() {
			case 'R': // restart every service
				d.showRestartAllPrompt()
			case '/': // activate search
				d.app.SetFocus(d.searchInput)
				return nil
			}
		case tcell.KeyUp:
			if d.list.GetCurrentItem() == 0 {
				d.app.SetFocus(d.searchInput)
				return nil
			}
		}
		return event
	})
}

func (d *Dashboard) consumeUpdates(updates <-chan []pkg.ServiceSummary) {
	go func() {
		for updatedServices := range updates {
			updatedServices := updatedServices
			d.app.QueueUpdateDraw(func() {
				d.currentServices = updatedServices
				d.filterServices(d.searchInput.GetText())
			})
		}
	}()
}

func (d *Dashboard) createLayout() *tview.Flex {
	legend := tview.NewTextView().
		SetText("[red]R[-] - Restart all services | [#69359C]/[-] - Search").
		SetTextColor(tcell.ColorWhite).
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	listFrame := tview.NewFrame(d.list).
		SetBorders(0, 0, 0, 0, 0, 0)

	return tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(d.header, 1, 1, false).
		AddItem(d.searchInput, 1, 1, false).
		AddItem(listFrame, 0, 1, true).
		AddItem(legend, 1, 1, false)
}

func (d *Dashboard) showServiceOptions(service pkg.ServiceSummary) {
	modal := tview.NewModal().
		SetText(fmt.Sprintf("Service: %s\nChoose an action:", service.ServiceName)).
		AddButtons([]string{"Change Desired Count", "Restart Service", "Cancel"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			switch buttonLabel {
			case "Change Desired Count":
				d.showDesiredCountPrompt(service)
			case "Restart Service":
				d.restartService(service)
			default:
				d.app.SetRoot(d.layout, true)
			}
		})

	d.app.SetRoot(modal, false)
}

func (d *Dashboard) restartService(service pkg.ServiceSummary) {
	if err := d.store.Restart(d.ctx, service.Cluster, service.ServiceName); err != nil {
		d.showMessage(fmt.Sprintf("Failed to restart service: %v", err))
	} else {
		d.showMessage(fmt.Sprintf("Service %s has been restarted.", service.ServiceName))
	}
}

func (d *Dashboard) showRestartAllPrompt() {
	modal := tview.NewModal().
		SetText("Are you sure you want to restart all services?").
		AddButtons([]string{"Yes", "No"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			if buttonLabel == "Yes" {
				// snapshot on the event goroutine; the poll path
				// reassigns currentServices concurrently
				services := d.currentServices
				go d.restartAllServices(services)
			}
			d.app.SetRoot(d.layout, true)
		})

	d.app.SetRoot(modal, false)
}

// restartAllServices restarts the given snapshot sequentially. The control
// plane throttles aggressively, so no fan-out.
func (d *Dashboard) restartAllServices(services []pkg.ServiceSummary) {
	var failed []string
	for _, service := range services {
		if err := d.store.Restart(d.ctx, service.Cluster, service.ServiceName); err != nil {
			failed = append(failed, service.ServiceName)
		}
	}

	d.app.QueueUpdateDraw(func() {
		if len(failed) > 0 {
			d.showMessage(fmt.Sprintf("Failed to restart services: %v", failed))
		} else {
			d.showMessage("All services have been restarted successfully.")
		}
	})
}

func (d *Dashboard) showDesiredCountPrompt(service pkg.ServiceSummary) {
	inputField := tview.NewInputField().
		SetLabel(fmt.Sprintf("Change desired count for %s: ", service.ServiceName)).
		SetFieldWidth(5)

	inputField.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			newDesiredCount, err := strconv.Atoi(inputField.GetText())
			if err != nil || newDesiredCount < 0 {
				d.showMessage("Invalid input. Please enter a non-negative integer.")
				return
			}

			err = d.store.UpdateDesiredCount(d.ctx, service.Cluster, service.ServiceName, int32(newDesiredCount))
			if err != nil {
				d.showMessage(fmt.Sprintf("Failed to update service: %v", err))
				return
			}

			d.showMessage(fmt.Sprintf("Updated %s to desired count %d. The running count will update shortly.",
				service.ServiceName, newDesiredCount))
		}
	})

	d.app.SetRoot(inputField, true)
}

func (d *Dashboard) showMessage(message string) {
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			d.app.SetRoot(d.layout, true)
		})

	d.app.SetRoot(modal, false)
}

// RefreshInterval is how often the dashboard re-reads the cluster.
const RefreshInterval = 10 * time.Second
