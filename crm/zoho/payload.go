package zoho

import (
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
	"github.com/tanpawarit/chative-crm/crm/fieldmap"
	"github.com/tanpawarit/chative-crm/crm/resolve"
)

const (
	moduleLeads = "Leads"
	moduleTasks = "Tasks"
	moduleNotes = "Notes"

	codeSuccess = "SUCCESS"

	leadFields = "id,First_Name,Last_Name,Email,Company,Phone,Mobile,Designation"
)

// envelope is Zoho's {"data": [...]} wrapper for both reads and writes.
type envelope[T any] struct {
	Data []T `json:"data"`
}

type writeResult struct {
	Code    string          `json:"code"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

type writeDetails struct {
	ID string `json:"id"`
}

// id returns the record id of a successful write, or an error carrying
// Zoho's own message.
func (w writeResult) id() (string, error) {
	if w.Code != codeSuccess {
		msg := strings.TrimSpace(w.Message)
		if msg == "" {
			msg = "unknown error"
		}
		return "", fmt.Errorf("%w: zoho %s: %s", contractx.ErrRemote, w.Code, msg)
	}
	var d writeDetails
	if len(w.Details) > 0 {
		if err := json.Unmarshal(w.Details, &d); err != nil {
			return "", fmt.Errorf("%w: decode zoho details: %v", contractx.ErrRemote, err)
		}
	}
	if d.ID == "" {
		return "", fmt.Errorf("%w: zoho response carried no id", contractx.ErrRemote)
	}
	return d.ID, nil
}

func firstResult(resp envelope[writeResult]) (writeResult, error) {
	if len(resp.Data) == 0 {
		return writeResult{}, fmt.Errorf("%w: empty zoho response", contractx.ErrRemote)
	}
	return resp.Data[0], nil
}

type leadPayload struct {
	FirstName  string `json:"First_Name"`
	LastName   string `json:"Last_Name"`
	Company    string `json:"Company"`
	Email      string `json:"Email"`
	LeadSource string `json:"Lead_Source"`
	Phone      string `json:"Phone,omitempty"`
}

type taskPayload struct {
	Subject     string `json:"Subject"`
	Status      string `json:"Status"`
	Priority    string `json:"Priority"`
	Description string `json:"Description,omitempty"`
	DueDate     string `json:"Due_Date,omitempty"`
	WhatID      string `json:"What_Id,omitempty"`
	SeModule    string `json:"$se_module,omitempty"`
}

type moduleRef struct {
	APIName string `json:"api_name"`
}

type parentRef struct {
	Module moduleRef `json:"module"`
	ID     string    `json:"id"`
}

type notePayload struct {
	ParentID    parentRef `json:"Parent_Id"`
	NoteTitle   string    `json:"Note_Title"`
	NoteContent string    `json:"Note_Content"`
}

// lead is the read shape of a Leads record.
type lead struct {
	ID            string      `json:"id"`
	FirstName     string      `json:"First_Name"`
	LastName      string      `json:"Last_Name"`
	Email         string      `json:"Email"`
	Company       string      `json:"Company"`
	Phone         string      `json:"Phone"`
	Mobile        string      `json:"Mobile"`
	Designation   string      `json:"Designation"`
	Street        string      `json:"Street"`
	City          string      `json:"City"`
	State         string      `json:"State"`
	ZipCode       string      `json:"Zip_Code"`
	Country       string      `json:"Country"`
	Website       string      `json:"Website"`
	LinkedIn      string      `json:"LinkedIn"`
	LeadSource    string      `json:"Lead_Source"`
	Industry      string      `json:"Industry"`
	Employees     json.Number `json:"No_of_Employees"`
	AnnualRevenue json.Number `json:"Annual_Revenue"`
	RoofArea      json.Number `json:"Roof_Area"`
	Domain        string      `json:"Domain"`
	Description   string      `json:"Description"`
	CreatedTime   string      `json:"Created_Time"`
	ModifiedTime  string      `json:"Modified_Time"`
}

func (l lead) fullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

func (l lead) record() resolve.Record {
	phone := l.Phone
	if phone == "" {
		phone = l.Mobile
	}
	return resolve.Record{
		ID:      l.ID,
		Kind:    contractx.EntityLead,
		Name:    l.fullName(),
		Email:   l.Email,
		Company: l.Company,
		Phone:   phone,
		Title:   l.Designation,
	}
}

// updatePayload wraps a validated patch for PUT Leads/{id}.
func updatePayload(patch fieldmap.Patch) envelope[fieldmap.Patch] {
	return envelope[fieldmap.Patch]{Data: []fieldmap.Patch{patch}}
}
