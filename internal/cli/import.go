package cli

import (
	"fmt"
	"os"
)

// ImportCmd loads template plans from a YAML file.
type ImportCmd struct {
	File  string `arg:"" help:"YAML file with templates." type:"existingfile"`
	Owner uint   `help:"Owner user id; by default the owner named in the file is created."`
}

func (c *ImportCmd) Run(app *Context) error {
	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	plans, err := app.Templates.ImportYAML(app.Ctx, f, c.Owner)
	if err != nil {
		return err
	}
	for _, plan := range plans {
		fmt.Printf("Imported template #%d %q (%d tasks)\n", plan.ID, plan.Title, len(plan.Tasks))
	}
	return nil
}
