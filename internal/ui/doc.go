// Package ui holds the terminal styles used by the radiosync CLI.
//
// Styles are built with lipgloss and degrade to plain text when output is not a terminal.
package ui
