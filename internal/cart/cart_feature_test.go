package cart

import (
	"context"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"github.com/example/farmcart/internal/datamodels/product"
)

type cartWorld struct {
	products map[string]*product.Product
	cart     *Cart
	policy   DeliveryPolicy
}

func (w *cartWorld) aProduct(title, price, weight string) error {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return err
	}
	wt, err := decimal.NewFromString(weight)
	if err != nil {
		return err
	}
	w.products[title] = &product.Product{ID: "p-" + title, Title: title, Price: p, Weight: wt}
	return nil
}

func (w *cartWorld) deliveryCosts(charge, free int) error {
	w.policy = NewDeliveryPolicy(float64(charge), float64(free))
	return nil
}

func (w *cartWorld) addTimes(title string, n int) error {
	p, ok := w.products[title]
	if !ok {
		return fmt.Errorf("unknown product %q", title)
	}
	for i := 0; i < n; i++ {
		w.cart.Add(p)
	}
	return nil
}

func (w *cartWorld) incrementTimes(title string, n int) error {
	for i := 0; i < n; i++ {
		if err := w.cart.Increment("p-" + title); err != nil {
			return err
		}
	}
	return nil
}

func (w *cartWorld) decrement(title string) error {
	_, err := w.cart.Decrement("p-" + title)
	return err
}

func (w *cartWorld) lineCount(n int) error {
	if len(w.cart.Lines) != n {
		return fmt.Errorf("expected %d lines, got %d", n, len(w.cart.Lines))
	}
	return nil
}

func (w *cartWorld) hasQuantity(title, want string) error {
	for _, l := range w.cart.Lines {
		if l.ProductID == "p-"+title {
			if got := l.Quantity.StringFixed(2); got != want {
				return fmt.Errorf("expected quantity %s, got %s", want, got)
			}
			return nil
		}
	}
	return fmt.Errorf("%q is not in the cart", title)
}

func (w *cartWorld) money(field func(Summary) decimal.Decimal) func(string) error {
	return func(want string) error {
		if got := field(w.cart.Summarize(w.policy)).StringFixed(2); got != want {
			return fmt.Errorf("expected %s, got %s", want, got)
		}
		return nil
	}
}

func initializeCartScenario(sc *godog.ScenarioContext) {
	w := &cartWorld{}
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		w.products = map[string]*product.Product{}
		w.cart = New(nil)
		w.policy = DeliveryPolicy{}
		return ctx, nil
	})

	sc.Step(`^a product "([^"]*)" priced (\d+(?:\.\d+)?) weighing (\d+(?:\.\d+)?) kg$`, w.aProduct)
	sc.Step(`^delivery costs (\d+) below (\d+) kg$`, w.deliveryCosts)
	sc.Step(`^I add "([^"]*)" to the cart (\d+) times$`, w.addTimes)
	sc.Step(`^I increment "([^"]*)" (\d+) times$`, w.incrementTimes)
	sc.Step(`^I decrement "([^"]*)"$`, w.decrement)
	sc.Step(`^the cart has (\d+) lines?$`, w.lineCount)
	sc.Step(`^"([^"]*)" has quantity "([^"]*)"$`, w.hasQuantity)
	sc.Step(`^the subtotal is "([^"]*)"$`, w.money(func(s Summary) decimal.Decimal { return s.Subtotal }))
	sc.Step(`^the delivery charge is "([^"]*)"$`, w.money(func(s Summary) decimal.Decimal { return s.DeliveryCharge }))
	sc.Step(`^the grand total is "([^"]*)"$`, w.money(func(s Summary) decimal.Decimal { return s.GrandTotal }))
}

func TestCartFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "cart",
		ScenarioInitializer: initializeCartScenario,
		Options: &godog.Options{
			Format:   "progress",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("cart feature tests failed")
	}
}
