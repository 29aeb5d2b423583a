package ui

import (
	"github.com/rivo/tview"

	"github.com/bz888/agentchat/internal/api"
)

const (
	messagePage = "message"
	modelsPage  = "models"
)

func createModal(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

func (v *View) closePage(name string) {
	v.pages.RemovePage(name)
	v.app.SetFocus(v.input)
}

func (v *View) showMessage(text string) {
	modal := tview.NewModal().
		SetText(text).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(int, string) {
			v.closePage(messagePage)
		})
	v.pages.AddPage(messagePage, modal, true, true)
	v.app.SetFocus(modal)
}

func (v *View) showModelList(models []api.Model) {
	list := tview.NewList()
	list.SetTitle("Models").SetBorder(true)

	for i, model := range models {
		shortcut := rune(0)
		if i < 9 {
			shortcut = '1' + rune(i)
		}
		secondary := model.Provider
		if model.Description != "" {
			secondary = model.Provider + ": " + model.Description
		}
		if model.Name == v.state.Model {
			secondary = "current, " + secondary
		}
		list.AddItem(tview.Escape(model.Name), tview.Escape(secondary), shortcut, nil)
	}
	list.AddItem("Back", "", 'q', func() {
		v.closePage(modelsPage)
	})
	list.SetDoneFunc(func() {
		v.closePage(modelsPage)
	})

	v.pages.AddPage(modelsPage, createModal(list, 60, 2*len(models)+4), true, true)
	v.app.SetFocus(list)
}
