package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type MarotoProvider struct{}

func New() Provider {
	return &MarotoProvider{}
}

func (p *MarotoProvider) GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(25,
		text.NewCol(12, "Payment receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(25,
		col.New(6).Add(
			text.New("Receipt number: "+data.ReceiptNumber, props.Text{Top: 0}),
			text.New("Consultation: "+data.RequestID, props.Text{Top: 4}),
			text.New("Tier: "+data.Tier, props.Text{Top: 8}),
		),
		col.New(6).Add(
			text.New("Paid: "+data.PaidAt, props.Text{Top: 0}),
			text.New("Released: "+data.ReleasedAt, props.Text{Top: 4}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, data.Net+" "+data.Currency+" paid on "+data.PaidAt, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(15,
		text.NewCol(12, data.Summary, props.Text{Size: 9, Top: 0}),
	)

	m.AddRow(10,
		text.NewCol(8, "Item", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, line := range []struct {
		label  string
		amount string
	}{
		{"Consultation fee", data.Gross},
		{"Tier discount", "-" + data.Discount},
		{"Amount paid", data.Net},
		{"Platform fee", data.PlatformFee},
		{"Advisor payout", data.Payout},
	} {
		m.AddRow(10,
			text.NewCol(8, line.label, props.Text{Size: 9}),
			text.NewCol(4, line.amount+" "+data.Currency, props.Text{Size: 9, Align: align.Right}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
