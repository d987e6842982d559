// Package panels provides the side panels of the main window.
package panels

import (
	"fmt"
	"image/color"
	"sort"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"thermal-annotator/internal/anomaly"
	"thermal-annotator/internal/app"
	"thermal-annotator/pkg/colorutil"
)

// AnomalyPanel lists the visible anomalies with their overlay colour.
// Selecting a row toggles its highlight; the class selector and delete
// button act on the box in edit focus.
type AnomalyPanel struct {
	state *app.State

	items   []anomaly.Item
	list    *widget.List
	summary *widget.Label

	classSelect  *widget.Select
	deleteButton *widget.Button
	focus        anomaly.Slot

	// onEdit is called after the panel changed the collection.
	onEdit func()

	content fyne.CanvasObject
}

// NewAnomalyPanel creates the panel. It does not subscribe to state events;
// the owner calls Refresh.
func NewAnomalyPanel(state *app.State) *AnomalyPanel {
	p := &AnomalyPanel{state: state, focus: anomaly.NoSlot}

	p.list = widget.NewList(
		func() int { return len(p.items) },
		func() fyne.CanvasObject {
			swatch := canvas.NewRectangle(color.Transparent)
			swatch.SetMinSize(fyne.NewSize(14, 14))
			swatch.StrokeWidth = 2
			return container.NewHBox(swatch, widget.NewLabel(""))
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id < 0 || id >= len(p.items) {
				return
			}
			it := p.items[id]
			row := obj.(*fyne.Container)
			swatch := row.Objects[0].(*canvas.Rectangle)
			label := row.Objects[1].(*widget.Label)

			swatch.StrokeColor = colorutil.PaletteColor(it.Index)
			swatch.FillColor = color.Transparent
			label.TextStyle = fyne.TextStyle{}
			if it.Anomaly.ID != "" && it.Anomaly.ID == p.highlighted() {
				swatch.FillColor = colorutil.PaletteColor(it.Index)
				label.TextStyle = fyne.TextStyle{Bold: true}
			}
			label.SetText(rowText(it))
			swatch.Refresh()
		},
	)
	p.list.OnSelected = func(id widget.ListItemID) {
		if id >= 0 && id < len(p.items) {
			p.state.ToggleHighlight(p.items[id].Anomaly.ID)
		}
		p.list.UnselectAll()
	}

	p.classSelect = widget.NewSelect(anomaly.Classes, func(class string) {
		s := p.state.Session()
		if s == nil || p.focus == anomaly.NoSlot {
			return
		}
		if cur, ok := p.state.Collection().Get(p.focus); ok && cur.Class == class {
			return
		}
		if s.SetClass(p.focus, class) && p.onEdit != nil {
			p.onEdit()
		}
	})
	p.classSelect.PlaceHolder = "Class of selected box"
	p.classSelect.Disable()

	p.deleteButton = widget.NewButtonWithIcon("Delete", theme.DeleteIcon(), func() {
		s := p.state.Session()
		if s == nil || p.focus == anomaly.NoSlot {
			return
		}
		if s.Delete(p.focus) {
			p.SetFocus(anomaly.NoSlot, false)
			if p.onEdit != nil {
				p.onEdit()
			}
		}
	})
	p.deleteButton.Importance = widget.DangerImportance
	p.deleteButton.Disable()

	p.summary = widget.NewLabel("")
	p.summary.Wrapping = fyne.TextWrapWord

	editor := container.NewVBox(
		widget.NewLabelWithStyle("Selected box", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		p.classSelect,
		container.NewHBox(layout.NewSpacer(), p.deleteButton),
		widget.NewSeparator(),
		p.summary,
	)
	p.content = container.NewBorder(
		widget.NewLabelWithStyle("Anomalies", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		editor, nil, nil,
		p.list,
	)
	return p
}

// OnEdit sets the callback run after the panel edits the collection.
func (p *AnomalyPanel) OnEdit(fn func()) { p.onEdit = fn }

// Widget returns the panel content.
func (p *AnomalyPanel) Widget() fyne.CanvasObject { return p.content }

func (p *AnomalyPanel) highlighted() string {
	if coll := p.state.Collection(); coll != nil {
		return coll.Highlighted()
	}
	return ""
}

// Refresh reloads the rows and the class summary.
func (p *AnomalyPanel) Refresh() {
	coll := p.state.Collection()
	if coll == nil {
		p.items = nil
		p.summary.SetText("")
	} else {
		p.items = coll.Visible()
		p.summary.SetText(summaryText(coll.ClassCounts()))
	}
	if p.focus != anomaly.NoSlot {
		if coll == nil {
			p.SetFocus(anomaly.NoSlot, false)
		} else if _, ok := coll.Get(p.focus); !ok {
			p.SetFocus(anomaly.NoSlot, false)
		}
	}
	p.list.Refresh()
}

// SetFocus shows the box in edit focus in the editor controls.
func (p *AnomalyPanel) SetFocus(slot anomaly.Slot, ok bool) {
	coll := p.state.Collection()
	var a anomaly.Anomaly
	if ok && coll != nil {
		a, ok = coll.Get(slot)
	}
	if !ok {
		p.focus = anomaly.NoSlot
		p.classSelect.ClearSelected()
		p.classSelect.Disable()
		p.deleteButton.Disable()
		return
	}
	p.focus = slot
	p.classSelect.Enable()
	p.deleteButton.Enable()
	if p.classSelect.Selected != a.Class {
		p.classSelect.SetSelected(a.Class)
	}
}

func rowText(it anomaly.Item) string {
	a := it.Anomaly
	origin := "AI"
	if a.Origin == anomaly.OriginUser {
		origin = "manual"
	}
	return fmt.Sprintf("%d. %s [%s]", it.Index+1, a.Label(), origin)
}

func summaryText(counts map[string]int) string {
	if len(counts) == 0 {
		return "No anomalies"
	}
	classes := make([]string, 0, len(counts))
	total := 0
	for c, n := range counts {
		classes = append(classes, c)
		total += n
	}
	sort.Strings(classes)
	var b strings.Builder
	fmt.Fprintf(&b, "%d anomalies", total)
	for _, c := range classes {
		fmt.Fprintf(&b, "\n%s: %d", c, counts[c])
	}
	return b.String()
}
