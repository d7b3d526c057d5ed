package suite

import (
	"net/url"

	"github.com/vianscientific/apicheck"
	"github.com/vianscientific/apicheck/internal/apiclient"
)

const productCategory = "analytical-vials"

// Products lists, searches and filters products and fetches the first one.
// The dependent checks are skipped if the catalog is empty.
func (c *Checks) Products(t apicheck.TB, _ *apicheck.Session) {
	const check = "Get all products"

	products, ok := c.getList(t, check, "/products")
	if !ok {
		return
	}

	t.Pass(check, "retrieved %d products", len(products))

	if len(products) == 0 {
		t.Log("catalog is empty, skipping search, filter and product lookup")
		return
	}

	const searchCheck = "Product search"
	if list, ok := c.getList(t, searchCheck, "/products", apiclient.WithQuery("search", "vial")); ok {
		t.Pass(searchCheck, "found %d products matching `vial`", len(list))
	}

	const filterCheck = "Category filtering"
	if list, ok := c.getList(t, filterCheck, "/products", apiclient.WithQuery("category", productCategory)); ok {
		t.Pass(filterCheck, "found %d products in %s", len(list), productCategory)
	}

	first := objects(products)
	if len(first) == 0 || apicheck.String(first[0], "id") == "" {
		t.Check("Get specific product", "first product has no id")
		return
	}

	const productCheck = "Get specific product"

	ex, ok := c.get(t, productCheck, "/products/"+url.PathEscape(apicheck.String(first[0], "id")))
	if !ok {
		return
	}

	if obj, ok := apicheck.ExpectObject(t, productCheck, ex); ok {
		t.Pass(productCheck, "retrieved product: %s", apicheck.String(obj, "product_name"))
	}
}

// Categories lists categories and fetches the first one by slug.
func (c *Checks) Categories(t apicheck.TB, _ *apicheck.Session) {
	const check = "Get all categories"

	categories, ok := c.getList(t, check, "/categories")
	if !ok {
		return
	}

	if len(categories) == 0 {
		t.Check(check, "expected non-empty list")
		return
	}

	t.Pass(check, "retrieved %d categories", len(categories))

	const slugCheck = "Get specific category"

	first := objects(categories)
	if len(first) == 0 || apicheck.String(first[0], "slug") == "" {
		t.Check(slugCheck, "first category has no slug")
		return
	}

	ex, ok := c.get(t, slugCheck, "/categories/"+url.PathEscape(apicheck.String(first[0], "slug")))
	if !ok {
		return
	}

	if obj, ok := apicheck.ExpectObject(t, slugCheck, ex); ok {
		t.Pass(slugCheck, "retrieved category: %s", apicheck.String(obj, "name"))
	}
}

// CategoryFormData checks the categories offered by the product form.
func (c *Checks) CategoryFormData(t apicheck.TB, _ *apicheck.Session) {
	const check = "Category count"

	categories, ok := c.getList(t, check, "/categories")
	if !ok {
		return
	}

	if len(categories) != c.expectedCategories {
		t.Check(check, "expected %d categories, got %d", c.expectedCategories, len(categories))
		return
	}

	t.Pass(check, "retrieved %d categories", len(categories))

	const fieldsCheck = "Category dropdown data"

	for i, item := range categories {
		obj, ok := item.(map[string]any)
		if !ok {
			t.Check(fieldsCheck, "category %d is not an object", i)
			return
		}

		if !apicheck.ExpectFields(t, fieldsCheck, obj, "name", "slug") {
			return
		}
	}

	t.Pass(fieldsCheck, "all categories have name and slug")
}
