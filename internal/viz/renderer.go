package viz

// Figure is a plot description in the data/layout shape plotting frontends
// expect. Every value inside is plain JSON-serializable data.
type Figure struct {
	Data   []Series `json:"data"`
	Layout Layout   `json:"layout"`
}

type Layout struct {
	Title string `json:"title"`
}

// Series holds the union of the per-archetype trace fields; unused ones are
// omitted from the encoding.
type Series struct {
	Type   string      `json:"type"`
	X      []any       `json:"x,omitempty"`
	Y      []any       `json:"y,omitempty"`
	Labels []any       `json:"labels,omitempty"`
	Values []any       `json:"values,omitempty"`
	Fill   string      `json:"fill,omitempty"`
	Mode   string      `json:"mode,omitempty"`
	Header *TableCells `json:"header,omitempty"`
	Cells  *TableCells `json:"cells,omitempty"`
}

type TableCells struct {
	Values []any `json:"values"`
}

// Render turns a chart config into a figure. A config without data, or one
// whose axis columns cannot be resolved, renders as an empty figure whose
// layout title carries the problem.
func Render(cfg ChartConfig) Figure {
	if !cfg.Success || len(cfg.Data) == 0 {
		return Figure{Data: []Series{}, Layout: Layout{Title: "No data to display"}}
	}

	columns := cfg.Columns
	if len(columns) == 0 {
		return Figure{Data: []Series{}, Layout: Layout{Title: "Error: no columns to plot"}}
	}

	switch cfg.ChartType {
	case "pie":
		labels := resolveColumn(cfg.Labels, columns, 0)
		values := resolveColumn(cfg.Values, columns, 1)
		if labels == "" || values == "" {
			return Figure{Data: []Series{}, Layout: Layout{Title: "Error: pie chart needs two columns"}}
		}
		return Figure{
			Data: []Series{{
				Type:   "pie",
				Labels: columnValues(cfg.Data, labels),
				Values: columnValues(cfg.Data, values),
			}},
			Layout: Layout{Title: cfg.Title},
		}

	case "table":
		header := make([]any, 0, len(columns))
		cells := make([]any, 0, len(columns))
		for _, col := range columns {
			header = append(header, col)
			cells = append(cells, columnValues(cfg.Data, col))
		}
		return Figure{
			Data: []Series{{
				Type:   "table",
				Header: &TableCells{Values: header},
				Cells:  &TableCells{Values: cells},
			}},
			Layout: Layout{Title: cfg.Title},
		}

	default:
		x := resolveColumn(cfg.XAxis, columns, 0)
		y := resolveColumn(cfg.YAxis, columns, 1)
		if x == "" || y == "" {
			return Figure{Data: []Series{}, Layout: Layout{Title: "Error: chart needs two columns"}}
		}
		series := Series{
			Type: cfg.ChartType,
			X:    columnValues(cfg.Data, x),
			Y:    columnValues(cfg.Data, y),
		}
		switch cfg.ChartType {
		case "area":
			series.Type = "scatter"
			series.Fill = "tozeroy"
			series.Mode = "lines"
		case "line":
			series.Type = "scatter"
			series.Mode = "lines"
		case "scatter":
			series.Mode = "markers"
		}
		return Figure{Data: []Series{series}, Layout: Layout{Title: cfg.Title}}
	}
}

// resolveColumn prefers the model's pick when it names a real column,
// otherwise falls back to the positional default.
func resolveColumn(pick string, columns []string, fallback int) string {
	for _, col := range columns {
		if col == pick {
			return pick
		}
	}
	if fallback < len(columns) {
		return columns[fallback]
	}
	return ""
}

func columnValues(rows []map[string]any, column string) []any {
	values := make([]any, 0, len(rows))
	for _, row := range rows {
		values = append(values, row[column])
	}
	return values
}
