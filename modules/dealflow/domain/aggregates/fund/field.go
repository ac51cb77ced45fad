package fund

// Field names a fund attribute. The value doubles as the storage column name.
type Field string

type Kind int

const (
	KindText Kind = iota
	KindNumber
)

const (
	FundName          Field = "fund_name"
	Vintage           Field = "vintage"
	Size              Field = "size"
	Status            Field = "status"
	FundInceptionDate Field = "fund_inception_date"
	Strategy          Field = "strategy"
	SubStrategy       Field = "sub_strategy"
	Sector            Field = "sector"
	Industry          Field = "industry"
	Region            Field = "region"
	CountryRegion     Field = "country_region"
	NetIRR            Field = "net_irr"
	Qtl               Field = "qtl"
	Invested          Field = "invested"
	PctOfTgt          Field = "pct_of_tgt"
	Raised            Field = "raised"
	CurrInv           Field = "curr_inv"
	DPI               Field = "dpi"
	Amt               Field = "amt"
	Pct               Field = "pct"
	DryPowder         Field = "dry_powder"
	HistInv           Field = "hist_inv"
	MOIC              Field = "moic"
	ManagementFee     Field = "management_fee"
	PIC               Field = "pic"
	FirstQtl          Field = "first_qtl"
	SecondQtl         Field = "second_qtl"
	ThirdQtl          Field = "third_qtl"
	FourthQtl         Field = "fourth_qtl"
	NAQtl             Field = "na_qtl"
	TotalQtl          Field = "total_qtl"
	RVPI              Field = "rvpi"
	Target            Field = "target"
	TimeInMkt         Field = "time_in_mkt"
	TotInv            Field = "tot_inv"
	Unrealized        Field = "unrealized"
)

type Spec struct {
	Field Field
	Kind  Kind
}

// Schema is the fixed attribute set of a fund, in storage column order.
var Schema = []Spec{
	{FundName, KindText},
	{Vintage, KindNumber},
	{Size, KindText},
	{Status, KindText},
	{FundInceptionDate, KindText},
	{Strategy, KindText},
	{SubStrategy, KindText},
	{Sector, KindText},
	{Industry, KindText},
	{Region, KindText},
	{CountryRegion, KindText},
	{NetIRR, KindNumber},
	{Qtl, KindText},
	{Invested, KindText},
	{PctOfTgt, KindNumber},
	{Raised, KindText},
	{CurrInv, KindNumber},
	{DPI, KindNumber},
	{Amt, KindText},
	{Pct, KindNumber},
	{DryPowder, KindText},
	{HistInv, KindNumber},
	{MOIC, KindNumber},
	{ManagementFee, KindText},
	{PIC, KindNumber},
	{FirstQtl, KindNumber},
	{SecondQtl, KindNumber},
	{ThirdQtl, KindNumber},
	{FourthQtl, KindNumber},
	{NAQtl, KindNumber},
	{TotalQtl, KindNumber},
	{RVPI, KindNumber},
	{Target, KindText},
	{TimeInMkt, KindText},
	{TotInv, KindNumber},
	{Unrealized, KindText},
}

var kinds = func() map[Field]Kind {
	m := make(map[Field]Kind, len(Schema))
	for _, s := range Schema {
		m[s.Field] = s.Kind
	}
	return m
}()

// Lookup reports the kind of a known field.
func Lookup(f Field) (Kind, bool) {
	k, ok := kinds[f]
	return k, ok
}

// Columns lists the attribute columns in Schema order.
func Columns() []string {
	out := make([]string, len(Schema))
	for i, s := range Schema {
		out[i] = string(s.Field)
	}
	return out
}
