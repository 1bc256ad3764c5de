// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package plugin_test

import (
	"context"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/plugkit/internal/plugin"
	"github.com/holomush/plugkit/internal/signal"
)

var _ = Describe("Plugin lifecycle", func() {
	var (
		ctx context.Context
		reg *signal.Registry
		dir *plugin.Directory
	)

	BeforeEach(func() {
		ctx = context.Background()
		reg = signal.NewRegistry()
		Expect(plugin.RegisterLifecycleSignals(reg, &appOwner{})).To(Succeed())
		dir = plugin.NewDirectory(reg)
	})

	Describe("a producer and many consumers", func() {
		var producer *plugin.Instance
		var consumers []*plugin.Instance

		BeforeEach(func() {
			var err error
			producer, err = dir.Load(&testPlugin{
				name: "producer",
				activate: func(_ context.Context, h *plugin.Handle) error {
					_, err := h.Register("tick", "periodic tick")
					return err
				},
			})
			Expect(err).NotTo(HaveOccurred())

			consumers = nil
			for i := range 8 {
				name := fmt.Sprintf("consumer-%d", i)
				inst, err := dir.Load(&testPlugin{
					name: name,
					activate: func(_ context.Context, h *plugin.Handle) error {
						_, err := h.Connect(name+"_on_tick", "tick", func(context.Context, signal.Event) (any, error) {
							return name, nil
						}, "")
						return err
					},
				})
				Expect(err).NotTo(HaveOccurred())
				consumers = append(consumers, inst)
			}

			Expect(producer.Activate(ctx)).To(Succeed())
			activated, err := dir.ActivateMatching(ctx, []string{"consumer-*"}, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(activated).To(HaveLen(8))
		})

		It("delivers to every consumer in activation order", func() {
			results, err := producer.Handle().Send(ctx, "tick", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(8))
			Expect(results[0].Value).To(Equal("consumer-0"))
			Expect(results[7].Value).To(Equal("consumer-7"))
		})

		It("keeps sends consistent while consumers deactivate", func() {
			var wg sync.WaitGroup
			errs := make(chan error, 64)

			for range 4 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for range 50 {
						results, err := producer.Handle().Send(ctx, "tick", nil)
						if err != nil {
							errs <- err
							return
						}
						if len(results) > 8 {
							errs <- fmt.Errorf("unexpected fan-out %d", len(results))
							return
						}
					}
				}()
			}
			for _, c := range consumers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := c.Deactivate(ctx); err != nil {
						errs <- err
					}
				}()
			}
			wg.Wait()
			close(errs)

			Expect(errs).To(BeEmpty())
			Expect(reg.ReceiversOf("tick")).To(BeEmpty())

			results, err := producer.Handle().Send(ctx, "tick", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("removes everything on shutdown", func() {
			Expect(dir.DeactivateAll(ctx, true)).To(Succeed())
			Expect(dir.Active()).To(BeEmpty())

			for _, inst := range dir.Instances() {
				Expect(reg.Signals(inst)).To(BeEmpty())
				Expect(reg.Receivers(inst)).To(BeEmpty())
			}
			_, ok := reg.Signal("tick")
			Expect(ok).To(BeFalse())
		})
	})
})
