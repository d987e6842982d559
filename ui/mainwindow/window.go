// Package mainwindow provides the main application window.
package mainwindow

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"thermal-annotator/internal/anomaly"
	"thermal-annotator/internal/app"
	"thermal-annotator/internal/image"
	"thermal-annotator/internal/report"
	"thermal-annotator/internal/store"
	"thermal-annotator/internal/version"
	"thermal-annotator/internal/viewport"
	"thermal-annotator/ui/canvas"
	"thermal-annotator/ui/panels"
	"thermal-annotator/ui/prefs"
)

const appTitle = "Thermal Annotator"

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app   fyne.App
	state *app.State
	prefs *prefs.Prefs

	canvas    *canvas.AnnotationCanvas
	panel     *panels.AnomalyPanel
	split     *container.Split
	statusBar *widget.Label
	zoomLabel *widget.Label
	drawClass *widget.Select
}

// New creates a new main window.
func New(fyneApp fyne.App, state *app.State, p *prefs.Prefs) *MainWindow {
	win := fyneApp.NewWindow(appTitle)

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
		prefs:  p,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()

	mw.Resize(fyne.NewSize(
		float32(p.FloatWithFallback(prefs.KeyWindowWidth, 1280)),
		float32(p.FloatWithFallback(prefs.KeyWindowHeight, 820)),
	))
	mw.SetOnClosed(mw.SavePreferences)
	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.canvas = canvas.NewAnnotationCanvas(mw.state)
	mw.panel = panels.NewAnomalyPanel(mw.state)
	mw.statusBar = widget.NewLabel("Ready")
	mw.zoomLabel = widget.NewLabel("")

	mw.canvas.OnFocusChange(mw.panel.SetFocus)
	mw.canvas.OnZoomChange(mw.showZoom)
	mw.panel.OnEdit(mw.canvas.Refresh)

	canvasArea := container.NewBorder(
		mw.createToolbar(), // top
		nil,                // bottom
		nil,                // left
		nil,                // right
		mw.canvas,          // center
	)

	mw.split = container.NewHSplit(canvasArea, mw.panel.Widget())
	mw.split.SetOffset(mw.prefs.FloatWithFallback(prefs.KeySplitOffset, 0.75))

	content := container.NewBorder(
		nil, // top
		container.NewPadded(container.NewBorder(nil, nil, nil, mw.zoomLabel, mw.statusBar)), // bottom
		nil,      // left
		nil,      // right
		mw.split, // center
	)
	mw.SetContent(content)
}

// createToolbar creates the toolbar with file, zoom and drawing controls.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	mw.drawClass = widget.NewSelect(anomaly.Classes, func(class string) {
		if s := mw.state.Session(); s != nil {
			s.SetDefaultClass(class)
		}
	})
	mw.drawClass.SetSelected(mw.state.Config().SessionOptions().DefaultClass)

	tb := widget.NewToolbar(
		widget.NewToolbarAction(theme.FolderOpenIcon(), mw.onOpenInspection),
		widget.NewToolbarAction(theme.FileImageIcon(), mw.onOpenImage),
		widget.NewToolbarAction(theme.ViewRefreshIcon(), mw.onRefresh),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ZoomOutIcon(), func() { mw.canvas.Zoom(viewport.ZoomOut) }),
		widget.NewToolbarAction(theme.ZoomInIcon(), func() { mw.canvas.Zoom(viewport.ZoomIn) }),
		widget.NewToolbarAction(theme.ZoomFitIcon(), mw.canvas.ResetZoom),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), mw.onExportReport),
		widget.NewToolbarAction(theme.DownloadIcon(), mw.onExportImage),
	)
	return container.NewBorder(nil, nil, nil,
		container.NewHBox(widget.NewLabel("New box class:"), mw.drawClass),
		tb,
	)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Inspection...", mw.onOpenInspection),
		fyne.NewMenuItem("Open Image...", mw.onOpenImage),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export Report...", mw.onExportReport),
		fyne.NewMenuItem("Export Chart...", mw.onExportChart),
		fyne.NewMenuItem("Export Annotated Image...", mw.onExportImage),
	)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", func() { mw.canvas.Zoom(viewport.ZoomIn) }),
		fyne.NewMenuItem("Zoom Out", func() { mw.canvas.Zoom(viewport.ZoomOut) }),
		fyne.NewMenuItem("Reset Zoom", mw.canvas.ResetZoom),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Reload Anomalies", mw.onRefresh),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, viewMenu, helpMenu))
}

// setupEventHandlers registers for application events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventInspectionLoaded, func(data interface{}) {
		info, _ := data.(anomaly.Inspection)
		mw.SetTitle(appTitle + " - " + inspectionName(info))
		if s := mw.state.Session(); s != nil && mw.drawClass.Selected != "" {
			s.SetDefaultClass(mw.drawClass.Selected)
		}
		mw.prefs.SetString(prefs.KeyLastInspection, info.ID)
		mw.panel.SetFocus(anomaly.NoSlot, false)
		mw.panel.Refresh()
		mw.canvas.SyncFrame()
		mw.updateStatus("Inspection loaded: " + inspectionName(info))
	})

	mw.state.On(app.EventImageLoaded, func(data interface{}) {
		mw.canvas.SyncFrame()
		if src, ok := data.(*image.Source); ok {
			mw.updateStatus(fmt.Sprintf("Image loaded: %dx%d", src.Width, src.Height))
		}
	})

	mw.state.On(app.EventImageFailed, func(data interface{}) {
		if err, ok := data.(error); ok {
			mw.updateStatus("Image unavailable, editing disabled")
			dialog.ShowError(err, mw.Window)
		}
		mw.canvas.Refresh()
	})

	mw.state.On(app.EventAnomaliesChanged, func(interface{}) {
		mw.panel.Refresh()
		mw.canvas.Refresh()
	})

	mw.state.On(app.EventHighlightChanged, func(interface{}) {
		mw.panel.Refresh()
		mw.canvas.Refresh()
	})

	mw.state.On(app.EventRefreshed, func(data interface{}) {
		if list, ok := data.([]anomaly.Anomaly); ok {
			mw.updateStatus(fmt.Sprintf("Reloaded %d anomalies", len(list)))
		}
	})

	mw.state.On(app.EventPersistenceError, func(data interface{}) {
		err, ok := data.(error)
		if !ok {
			return
		}
		var pe *store.PersistenceError
		if errors.As(err, &pe) {
			slog.Warn("Store call failed", "op", pe.Op, "anomaly", pe.AnomalyID, "error", pe.Err)
		}
		mw.updateStatus("Saving failed: " + err.Error())
		dialog.ShowError(err, mw.Window)
	})
}

// OpenInspection loads an inspection by id and reports a failure in a
// dialog.
func (mw *MainWindow) OpenInspection(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mw.state.Config().Store.Timeout)
	defer cancel()
	if err := mw.state.LoadInspection(ctx, id); err != nil {
		slog.Error("Failed to open inspection", "inspection", id, "error", err)
		mw.updateStatus("Failed to open inspection " + id)
		dialog.ShowError(err, mw.Window)
	}
}

// RestoreLastInspection reopens the inspection of the previous run.
func (mw *MainWindow) RestoreLastInspection() {
	if id := mw.prefs.String(prefs.KeyLastInspection); id != "" {
		mw.OpenInspection(id)
	}
}

// SavePreferences records the window layout and writes preferences.
func (mw *MainWindow) SavePreferences() {
	size := mw.Canvas().Size()
	if size.Width > 0 && size.Height > 0 {
		mw.prefs.SetFloat(prefs.KeyWindowWidth, float64(size.Width))
		mw.prefs.SetFloat(prefs.KeyWindowHeight, float64(size.Height))
	}
	mw.prefs.SetFloat(prefs.KeySplitOffset, mw.split.Offset)
	if !mw.prefs.Changed() {
		return
	}
	if err := mw.prefs.Save(); err != nil {
		slog.Error("Failed to save preferences", "path", mw.prefs.Path(), "error", err)
	}
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

func (mw *MainWindow) showZoom(factor float64) {
	mw.zoomLabel.SetText(fmt.Sprintf("%.0f%%", factor*100))
}

func inspectionName(info anomaly.Inspection) string {
	if info.InspectionNo != "" {
		return info.InspectionNo
	}
	return info.ID
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.String(prefs.KeyLastDir)
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

// saveLastDir saves the directory of the given file path.
func (mw *MainWindow) saveLastDir(filePath string) {
	mw.prefs.SetString(prefs.KeyLastDir, filepath.Dir(filePath))
}

// Menu action handlers

func (mw *MainWindow) onOpenInspection() {
	entry := widget.NewEntry()
	entry.SetPlaceHolder("Inspection id")
	entry.SetText(mw.prefs.String(prefs.KeyLastInspection))
	dialog.ShowForm("Open Inspection", "Open", "Cancel",
		[]*widget.FormItem{widget.NewFormItem("Inspection", entry)},
		func(ok bool) {
			if ok {
				mw.OpenInspection(entry.Text)
			}
		}, mw.Window)
}

func (mw *MainWindow) onOpenImage() {
	if _, ok := mw.state.Inspection(); !ok {
		dialog.ShowInformation("Open Image", "Open an inspection first.", mw.Window)
		return
	}
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)
		if err := mw.state.LoadImage(context.Background(), path); err != nil {
			var le *image.LoadError
			if !errors.As(err, &le) {
				dialog.ShowError(err, mw.Window)
			}
		}
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter(image.SupportedFormats()))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), mw.state.Config().Store.Timeout)
	defer cancel()
	if err := mw.state.Refresh(ctx); err != nil && !errors.Is(err, app.ErrNoInspection) {
		dialog.ShowError(err, mw.Window)
	}
}

func (mw *MainWindow) onExportReport() {
	info, ok := mw.state.Inspection()
	if !ok {
		return
	}
	mw.state.Flush()
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		defer writer.Close()
		mw.saveLastDir(writer.URI().Path())
		if err := mw.state.WriteReport(context.Background(), writer, time.Now()); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.updateStatus("Report written to " + writer.URI().Path())
	}, mw.Window)
	fd.SetFileName(report.FileName(info, time.Now()))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onExportChart() {
	info, ok := mw.state.Inspection()
	if !ok {
		return
	}
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		defer writer.Close()
		if err := report.WriteChart(writer, info, mw.state.Collection().Anomalies()); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFileName(strings.TrimSuffix(report.FileName(info, time.Now()), ".txt") + ".html")
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onExportImage() {
	info, ok := mw.state.Inspection()
	if !ok {
		return
	}
	img, err := mw.state.ExportImage()
	if err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		defer writer.Close()
		mw.saveLastDir(writer.URI().Path())
		if err := png.Encode(writer, img); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFileName("annotated-" + inspectionName(info) + ".png")
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".png"}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+appTitle,
		fmt.Sprintf("%s v%s\n\n"+
			"Review and correct thermal anomalies on transformer images.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			appTitle, version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}
