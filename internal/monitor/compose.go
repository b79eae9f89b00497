package monitor

import (
	"strings"
	"time"
)

func ComposeAvailable(ev Event) string {
	var b strings.Builder
	b.WriteString("🎉 Server back in stock!\n\n")
	if ev.DisplayName != "" {
		b.WriteString("Server: " + ev.DisplayName + "\n")
	}
	b.WriteString("Plan: " + orPlaceholder(ev.ProductCode) + "\n")
	b.WriteString("Datacenter: " + orPlaceholder(ev.Location) + "\n")
	if ev.Config != nil {
		b.WriteString("Config: " + ev.Config.Display() + "\n")
		b.WriteString("├─ Memory: " + orPlaceholder(ev.Config.Memory) + "\n")
		b.WriteString("└─ Storage: " + orPlaceholder(ev.Config.Storage) + "\n")
	}
	b.WriteString("Status: " + orPlaceholder(ev.Status) + "\n")
	b.WriteString("Time: " + formatTime(ev.At) + "\n\n")
	b.WriteString("💡 Order it while it lasts!")
	return b.String()
}

func ComposeUnavailable(ev Event) string {
	var b strings.Builder
	b.WriteString("📦 Server out of stock\n\n")
	if ev.DisplayName != "" {
		b.WriteString("Server: " + ev.DisplayName + "\n")
	}
	b.WriteString("Plan: " + orPlaceholder(ev.ProductCode) + "\n")
	b.WriteString("Datacenter: " + orPlaceholder(ev.Location) + "\n")
	if ev.Config != nil {
		b.WriteString("Config: " + ev.Config.Display() + "\n")
	}
	b.WriteString("Status: out of stock\n")
	b.WriteString("Time: " + formatTime(ev.At))
	return b.String()
}

// Compose picks the message shape for the event's change type.
func Compose(ev Event) string {
	if ev.Change == ChangeUnavailable {
		return ComposeUnavailable(ev)
	}
	return ComposeAvailable(ev)
}

func ComposeNewOffering(o Offering, at time.Time) string {
	var b strings.Builder
	b.WriteString("🆕 New server listed!\n\n")
	b.WriteString("Plan: " + orPlaceholder(o.ProductCode) + "\n")
	b.WriteString("Name: " + orPlaceholder(o.Name) + "\n")
	b.WriteString("CPU: " + orPlaceholder(o.CPU) + "\n")
	b.WriteString("Memory: " + orPlaceholder(o.Memory) + "\n")
	b.WriteString("Storage: " + orPlaceholder(o.Storage) + "\n")
	b.WriteString("Bandwidth: " + orPlaceholder(o.Bandwidth) + "\n")
	b.WriteString("Time: " + formatTime(at) + "\n\n")
	b.WriteString("💡 Take a look at the details!")
	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return placeholder
	}
	return t.Format(timestampLayout)
}
