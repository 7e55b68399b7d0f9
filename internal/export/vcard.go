package export

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/emersion/go-vcard"
)

var errNoContacts = errors.New("vcard: no contacts to export")

// renderVCard encodes every contact as a vCard 4.0 entry, one after another.
func renderVCard(doc Document) ([]byte, error) {
	if len(doc.Contacts) == 0 {
		return nil, errNoContacts
	}
	var buf bytes.Buffer
	enc := vcard.NewEncoder(&buf)
	for _, c := range doc.Contacts {
		card := contactCard(c)
		vcard.ToV4(card)
		if err := enc.Encode(card); err != nil {
			return nil, fmt.Errorf("vcard: encode %s: %w", c.FullName(), err)
		}
	}
	return buf.Bytes(), nil
}

func contactCard(c Contact) vcard.Card {
	card := make(vcard.Card)
	card.SetValue(vcard.FieldFormattedName, c.FullName())
	card.SetName(&vcard.Name{
		FamilyName:     c.Family,
		GivenName:      c.Given,
		AdditionalName: c.Additional,
	})
	if c.Phone != "" {
		card.Add(vcard.FieldTelephone, &vcard.Field{
			Value:  c.Phone,
			Params: vcard.Params{vcard.ParamType: {vcard.TypeCell}},
		})
	}
	if c.EmergencyPhone != "" {
		card.Add(vcard.FieldTelephone, &vcard.Field{
			Value:  c.EmergencyPhone,
			Params: vcard.Params{vcard.ParamType: {vcard.TypeWork}, "X-LABEL": {"Emergencia"}},
		})
	}
	if c.Email != "" {
		card.Add(vcard.FieldEmail, &vcard.Field{
			Value:  c.Email,
			Params: vcard.Params{vcard.ParamType: {"internet"}},
		})
	}
	if c.Address != "" {
		card.AddAddress(&vcard.Address{
			Field:         &vcard.Field{Params: vcard.Params{vcard.ParamType: {vcard.TypeHome}}},
			StreetAddress: c.Address,
		})
	}
	if c.Org != "" {
		card.SetValue(vcard.FieldOrganization, c.Org)
	}
	if c.Title != "" {
		card.SetValue(vcard.FieldTitle, c.Title)
	}
	if c.Note != "" {
		card.SetValue(vcard.FieldNote, c.Note)
	}
	if c.PhotoURL != "" {
		card.Add(vcard.FieldPhoto, &vcard.Field{
			Value:  c.PhotoURL,
			Params: vcard.Params{vcard.ParamValue: {"uri"}},
		})
	}
	return card
}
