package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/lox/kenny/internal/questions"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	categoryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))
)

// QuestionsCmd loads a question bank and summarises it.
type QuestionsCmd struct {
	File   string `arg:"" optional:"" type:"existingfile" help:"Question bank (.csv, .toml, .yaml); defaults to the configured file"`
	Export string `help:"Also write the bank to this file, converting by extension"`
}

func (c *QuestionsCmd) Run(g *Globals) error {
	path := c.File
	if path == "" {
		cfg, err := g.loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Questions.File
	}

	bank, err := questions.Load(path)
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%s: %d questions", path, bank.Len())))
	for _, cc := range bank.Categories() {
		fmt.Printf("  %-30s %s\n", categoryStyle.Render(cc.Category), countStyle.Render(fmt.Sprint(cc.Count)))
	}

	if c.Export != "" {
		if err := questions.Save(c.Export, bank.Questions()); err != nil {
			return fmt.Errorf("export questions: %w", err)
		}
		fmt.Printf("Wrote %d questions to %s\n", bank.Len(), c.Export)
	}
	return nil
}
