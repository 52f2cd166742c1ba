package main

import (
	"context"
	"fmt"
)

// StatsCmd prints knowledge index statistics.
type StatsCmd struct{}

func (c *StatsCmd) Execute(_ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	vs, err := a.vectorStore(context.Background())
	if err != nil {
		return err
	}
	st, err := vs.Stats(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Documents: %d\nDimension: %d\n", st.TotalDocuments, st.Dimension)
	return nil
}
