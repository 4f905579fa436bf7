// Copyright 2025 The Workspaced Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	goflag "flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	workspacev1alpha1 "github.com/mikelane/workspaced/api/v1alpha1"
	"github.com/mikelane/workspaced/internal/cleanup"
	"github.com/mikelane/workspaced/internal/config"
	"github.com/mikelane/workspaced/internal/controller"
	"github.com/mikelane/workspaced/internal/kubeclient"
	"github.com/mikelane/workspaced/internal/metrics"
	"github.com/mikelane/workspaced/internal/provision"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(workspacev1alpha1.AddToScheme(scheme))
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	opts := zap.Options{
		Development: true,
	}

	cmd := &cobra.Command{
		Use:   "workspaced",
		Short: "Workspace runtime provisioning operator",
		Long: `workspaced reconciles WorkspaceRuntime resources and keeps workspace storage
consistent with the configured PVC strategy.`,
		SilenceUsage: true,
		RunE: func(*cobra.Command, []string) error {
			ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

			cfg, err := config.Load(v)
			if err != nil {
				setupLog.Error(err, "invalid configuration")
				return err
			}
			return run(cfg)
		},
	}

	zapFlags := goflag.NewFlagSet("zap", goflag.ExitOnError)
	opts.BindFlags(zapFlags)
	cmd.Flags().AddGoFlagSet(zapFlags)

	if err := config.BindFlags(cmd.Flags(), v); err != nil {
		panic(err)
	}

	return cmd
}

func run(cfg *config.Config) error {
	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsserver.Options{BindAddress: cfg.MetricsBindAddress},
		HealthProbeBindAddress: cfg.ProbeBindAddress,
		LeaderElection:         cfg.LeaderElect,
		LeaderElectionID:       "7c1e9a52.workspaced.io",
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		return err
	}

	recorder := metrics.NewAsyncStorageMetrics()
	remover := provision.NewPodRemover(kubeclient.NewFactory(mgr.GetConfig()), cfg.DeleteTimeout, recorder)
	pipeline := provision.NewPipeline(
		provision.NewAsyncStoragePodInterceptor(cfg.PVCStrategy, remover, recorder),
	)

	if err := (&controller.WorkspaceRuntimeReconciler{
		Client:      mgr.GetClient(),
		Scheme:      mgr.GetScheme(),
		Provisioner: pipeline,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "WorkspaceRuntime")
		return err
	}

	scheduler := cleanup.NewScheduler(mgr.GetClient(), remover, cfg.PVCStrategy, cfg.CleanupInterval, cfg.IdleTimeout, ctrl.Log)
	if err := mgr.Add(scheduler); err != nil {
		setupLog.Error(err, "unable to add idle sweep")
		return err
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		return err
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		return err
	}

	setupLog.Info("starting manager",
		"pvcStrategy", cfg.PVCStrategy,
		"deleteTimeout", cfg.DeleteTimeout,
		"cleanupInterval", cfg.CleanupInterval)
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		return fmt.Errorf("manager exited: %w", err)
	}
	return nil
}
