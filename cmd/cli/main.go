package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// statusDoc mirrors the JSON served by /api/status.
type statusDoc struct {
	Title       string    `json:"title"`
	GeneratedAt time.Time `json:"generated_at"`
	Protocols   []string  `json:"protocols"`
	Summary     struct {
		Servers int `json:"servers"`
		AllUp   int `json:"all_up"`
		AllDown int `json:"all_down"`
	} `json:"summary"`
	Servers []struct {
		ID      string          `json:"id"`
		Country string          `json:"country"`
		Address string          `json:"address"`
		Up      map[string]bool `json:"up"`
	} `json:"servers"`
}

var (
	upStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#50fa7b"))
	downStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5555")).Bold(true)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#bd93f9"))
	headerStyle = lipgloss.NewStyle().Underline(true)
	cellStyle   = lipgloss.NewStyle().Width(8)
	addrStyle   = lipgloss.NewStyle().Width(36)
)

func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	downOnly := len(os.Args) > 1 && os.Args[1] == "down"

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(strings.TrimRight(api, "/") + "/api/status")
	if err != nil {
		fmt.Println("Error contacting API:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		fmt.Println("No scan has completed yet; try again shortly.")
		os.Exit(1)
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Println("API returned status:", resp.Status)
		os.Exit(1)
	}

	var doc statusDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		fmt.Println("Bad response from API:", err)
		os.Exit(1)
	}

	fmt.Println(titleStyle.Render(doc.Title))
	fmt.Printf("Updated: %s\n\n", doc.GeneratedAt.Local().Format("2006-01-02 15:04:05"))

	head := cellStyle.Render("ID") + cellStyle.Render("COUNTRY") + addrStyle.Render("ADDRESS")
	for _, p := range doc.Protocols {
		head += cellStyle.Render(strings.ToUpper(p))
	}
	fmt.Println(headerStyle.Render(head))

	for _, s := range doc.Servers {
		allUp := true
		row := cellStyle.Render(s.ID) + cellStyle.Render(s.Country) + addrStyle.Render(s.Address)
		for _, p := range doc.Protocols {
			if s.Up[p] {
				row += cellStyle.Render(upStyle.Render("UP"))
			} else {
				allUp = false
				row += cellStyle.Render(downStyle.Render("DOWN"))
			}
		}
		if downOnly && allUp {
			continue
		}
		fmt.Println(row)
	}

	fmt.Printf("\n%d servers, %s all up, %s all down\n",
		doc.Summary.Servers,
		upStyle.Render(fmt.Sprint(doc.Summary.AllUp)),
		downStyle.Render(fmt.Sprint(doc.Summary.AllDown)),
	)
}
