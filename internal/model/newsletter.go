package model

import "time"

// Newsletter is a publishing brand identified by the addresses it sends from.
type Newsletter struct {
	// ID is the unique identifier for this brand.
	ID string `json:"id" db:"id"`

	// BrandName is the display name of the brand.
	BrandName string `json:"brand_name" db:"brand_name"`

	// BrandEmail is the primary sending address.
	BrandEmail string `json:"brand_email" db:"brand_email"`

	// SecondEmail is an alternate sending address, often used for
	// subscription confirmation mail. Empty when unused.
	SecondEmail string `json:"second_email,omitempty" db:"second_email"`

	// ThirdEmail is a further alternate sending address. Empty when unused.
	ThirdEmail string `json:"third_email,omitempty" db:"third_email"`

	// DoubleCheck marks brands whose first mail asks the reader to confirm
	// the subscription before it counts as active.
	DoubleCheck bool `json:"double_check" db:"double_check"`

	// ImageURL is the brand logo.
	ImageURL string `json:"image_url,omitempty" db:"image_url"`

	// CreatedAt is when the brand was registered.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Addresses returns the non-empty registered sending addresses in lookup order.
func (n Newsletter) Addresses() []string {
	var out []string
	for _, a := range []string{n.BrandEmail, n.SecondEmail, n.ThirdEmail} {
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}
