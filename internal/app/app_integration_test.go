// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package app_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/plugkit/internal/app"
	"github.com/holomush/plugkit/internal/plugin"
	"github.com/holomush/plugkit/internal/signal"
	"github.com/holomush/plugkit/plugins/echo"
)

var _ = Describe("Bundled plugins", func() {
	var (
		ctx context.Context
		a   *app.App
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg := newConfig(nil)
		cfg.Plugins.Dir = filepath.Join("..", "..", "plugins")

		var err error
		a, err = app.New(cfg, app.WithLogger(discard), app.WithClasses(echo.Class()))
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Start(ctx)).To(Succeed())
	})

	AfterEach(func() {
		Expect(a.Stop(ctx)).To(Succeed())
	})

	It("activates the echo plugin and the greeter script", func() {
		names := []string{}
		for _, inst := range a.Directory().Active() {
			names = append(names, inst.Name())
		}
		Expect(names).To(Equal([]string{"echo", "greeter"}))
		Expect(a.Ready()).To(BeTrue())
	})

	It("lets the app talk to both plugins", func() {
		results, err := a.Signals().Send(ctx, echo.Signal, a, signal.Payload{"message": "ping"})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(ConsistOf(signal.Result{Receiver: echo.ReplyReceiver, Value: "echo: ping"}))

		results, err = a.Signals().Send(ctx, "greet", a, signal.Payload{"who": "tester"})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Value).To(Equal("hello, tester"))
	})

	It("lets the greeter answer the sender when no name is given", func() {
		greeter, ok := a.Directory().Instance("greeter")
		Expect(ok).To(BeTrue())

		echoInst, ok := a.Directory().Instance("echo")
		Expect(ok).To(BeTrue())

		results, err := echoInst.Handle().Send(ctx, "greet", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(results[0].Value).To(Equal("hello, echo"))
		Expect(greeter.Active()).To(BeTrue())
	})

	It("lets the echo plugin watch the greeter activate", func() {
		inst, ok := a.Directory().Instance("echo")
		Expect(ok).To(BeTrue())

		p, ok := inst.Plugin().(*echo.Plugin)
		Expect(ok).To(BeTrue())
		Expect(p.Seen()).To(Equal([]string{"echo", "greeter"}))
	})

	It("counts later activations in the greeter script", func() {
		late, err := a.Directory().Load(&recorder{name: "late", calls: &calls{}})
		Expect(err).NotTo(HaveOccurred())
		Expect(late.Activate(ctx)).To(Succeed())

		results, err := late.Handle().Send(ctx, plugin.SignalActivatePost, signal.Payload{plugin.PayloadPlugin: late})
		Expect(err).NotTo(HaveOccurred())

		values := map[string]any{}
		for _, r := range results {
			values[r.Receiver] = r.Value
		}
		// greeter has seen itself, late's activation and this manual send.
		Expect(values).To(HaveKeyWithValue("greeter_welcome", float64(3)))
	})

	It("removes everything the plugins registered on Stop", func() {
		Expect(a.Stop(ctx)).To(Succeed())

		Expect(a.Signals().Signals(nil)).To(HaveLen(4))
		Expect(a.Signals().Receivers(nil)).To(BeEmpty())

		Expect(a.Start(ctx)).To(Succeed())
	})
})
